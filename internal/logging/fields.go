package logging

// Standard field names.
const (
	FieldService    = "service"
	FieldRequestID  = "request_id"
	FieldProjectID  = "project_id"
	FieldUserID     = "user_id"
	FieldClusterID  = "cluster_id"
	FieldTemplateID = "cluster_template_id"
	FieldAPIVersion = "api_version"
	FieldCommand    = "command"
	FieldOperation  = "operation"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldRemoteAddr = "remote_addr"
	FieldUserAgent  = "user_agent"
)
