package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yaroslav/clusterplane/internal/apiversion"
	"github.com/yaroslav/clusterplane/models"
)

// MediaType describes a media type the API serves.
type MediaType struct {
	Base string `json:"base"`
	Type string `json:"type"`
}

// VersionDocument describes one major API version.
type VersionDocument struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	MinVersion string        `json:"min_version"`
	MaxVersion string        `json:"max_version"`
	Links      []models.Link `json:"links"`
}

// RootDocument is returned by GET /.
type RootDocument struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Versions       []VersionDocument `json:"versions"`
	DefaultVersion VersionDocument   `json:"default_version"`
}

// V1Document is returned by GET /v1/.
type V1Document struct {
	ID         string        `json:"id"`
	MediaTypes []MediaType   `json:"media_types"`
	Links      []models.Link `json:"links"`
	Clusters   []models.Link `json:"clusters"`
}

// Root handles GET /.
func Root(c *gin.Context) {
	v1 := v1Version(c)
	c.JSON(http.StatusOK, RootDocument{
		Name:           "Container Infrastructure Management API",
		Description:    "Provisions and manages container orchestration clusters.",
		Versions:       []VersionDocument{v1},
		DefaultVersion: v1,
	})
}

// V1 handles GET /v1/.
func V1(c *gin.Context) {
	host := hostURL(c)
	c.JSON(http.StatusOK, V1Document{
		ID: "v1",
		MediaTypes: []MediaType{{
			Base: "application/json",
			Type: "application/vnd.openstack.magnum.v1+json",
		}},
		Links: []models.Link{
			{Href: host + "/v1/", Rel: "self"},
		},
		Clusters: []models.Link{
			{Href: host + "/v1/clusters/", Rel: "self"},
			{Href: host + "/clusters/", Rel: "bookmark"},
		},
	})
}

func v1Version(c *gin.Context) VersionDocument {
	return VersionDocument{
		ID:         "v1",
		Status:     "CURRENT",
		MinVersion: apiversion.BaseVersion.String(),
		MaxVersion: apiversion.MaxVersion.String(),
		Links:      []models.Link{{Href: hostURL(c) + "/v1/", Rel: "self"}},
	}
}

// hostURL returns the scheme and host the client used to reach the API.
func hostURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}
