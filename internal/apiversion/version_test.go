package apiversion

import (
	"errors"
	"net/http"
	"testing"

	"github.com/yaroslav/clusterplane/models"
)

const (
	defaultHdr = "container-infra 1.1"
	latestHdr  = "container-infra 1.10"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		want      Version
	}{
		{"explicit", "container-infra 1.5", Version{1, 5}},
		{"two digit minor", "container-infra 1.10", Version{1, 10}},
		{"default when empty", "", Version{1, 1}},
		{"latest", "container-infra latest", Version{1, 10}},
		{"latest mixed case", "container-infra LaTeSt", Version{1, 10}},
		{"extra whitespace", "  container-infra   1.3 ", Version{1, 3}},
		{"future version parses", "container-infra 2.0", Version{2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Negotiate(tt.requested, defaultHdr, latestHdr)
			if err != nil {
				t.Fatalf("Negotiate(%q) error = %v", tt.requested, err)
			}
			if got != tt.want {
				t.Errorf("Negotiate(%q) = %v, want %v", tt.requested, got, tt.want)
			}
		})
	}
}

func TestNegotiate_NotAcceptable(t *testing.T) {
	tests := []string{
		"container-infra",
		"1.5",
		"container-infra 1.5 extra",
		"compute 1.5",
		"container-infra 1",
		"container-infra 1.2.3",
		"container-infra one.two",
		"container-infra 1.x",
		"   ",
	}

	for _, requested := range tests {
		t.Run(requested, func(t *testing.T) {
			_, err := Negotiate(requested, defaultHdr, latestHdr)
			if !errors.Is(err, models.ErrNotAcceptable) {
				t.Errorf("Negotiate(%q) error = %v, want ErrNotAcceptable", requested, err)
			}
		})
	}
}

func TestFromHeader(t *testing.T) {
	got, err := FromHeader(http.Header{}, defaultHdr, latestHdr)
	if err != nil {
		t.Fatalf("missing header: unexpected error: %v", err)
	}
	if got != (Version{1, 1}) {
		t.Errorf("missing header: got %v, want 1.1", got)
	}

	h := http.Header{}
	h.Set(Header, "container-infra 1.4")
	got, err = FromHeader(h, defaultHdr, latestHdr)
	if err != nil {
		t.Fatalf("explicit header: unexpected error: %v", err)
	}
	if got != (Version{1, 4}) {
		t.Errorf("explicit header: got %v, want 1.4", got)
	}

	for _, blank := range []string{"", "  "} {
		h := http.Header{}
		h.Set(Header, blank)
		if _, err := FromHeader(h, defaultHdr, latestHdr); !errors.Is(err, models.ErrNotAcceptable) {
			t.Errorf("FromHeader(%q) error = %v, want ErrNotAcceptable", blank, err)
		}
	}
}

func TestNegotiate_LatestReplacesService(t *testing.T) {
	// The service token comes from the latest header, not the request.
	got, err := Negotiate("anything latest", defaultHdr, latestHdr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != MaxVersion {
		t.Errorf("got %v, want %v", got, MaxVersion)
	}
}

func TestCompare_TotalOrder(t *testing.T) {
	versions := []Version{{1, 1}, {1, 2}, {1, 9}, {1, 10}, {2, 0}, {0, 5}}

	for _, a := range versions {
		for _, b := range versions {
			lt, eq, gt := a.LessThan(b), a == b, b.LessThan(a)
			count := 0
			for _, ok := range []bool{lt, eq, gt} {
				if ok {
					count++
				}
			}
			if count != 1 {
				t.Errorf("%v vs %v: lt=%v eq=%v gt=%v", a, b, lt, eq, gt)
			}
		}
	}

	if !(Version{1, 9}).LessThan(Version{1, 10}) {
		t.Error("1.9 should order before 1.10")
	}
}

func TestInRange(t *testing.T) {
	start, end := MustParse("1.3"), MustParse("1.9")

	tests := []struct {
		v    Version
		want bool
	}{
		{Version{1, 2}, false},
		{Version{1, 3}, true},
		{Version{1, 5}, true},
		{Version{1, 9}, true},
		{Version{1, 10}, false},
	}

	for _, tt := range tests {
		got, err := InRange(tt.v, start, end)
		if err != nil {
			t.Fatalf("InRange(%v) error = %v", tt.v, err)
		}
		if got != tt.want {
			t.Errorf("InRange(%v, %v, %v) = %v, want %v", tt.v, start, end, got, tt.want)
		}
	}
}

func TestInRange_Null(t *testing.T) {
	if !IsNull(Version{}) {
		t.Fatal("zero value should be null")
	}
	if _, err := InRange(Version{}, BaseVersion, MaxVersion); !errors.Is(err, ErrNullVersion) {
		t.Errorf("error = %v, want ErrNullVersion", err)
	}
}

func TestCheckSupported(t *testing.T) {
	if err := CheckSupported(MustParse("1.1")); err != nil {
		t.Errorf("1.1 should be supported: %v", err)
	}
	if err := CheckSupported(MustParse("1.10")); err != nil {
		t.Errorf("1.10 should be supported: %v", err)
	}
	for _, s := range []string{"1.0", "1.11", "2.0"} {
		if err := CheckSupported(MustParse(s)); !errors.Is(err, models.ErrNotAcceptable) {
			t.Errorf("CheckSupported(%s) error = %v, want ErrNotAcceptable", s, err)
		}
	}
}

func TestVersion_HeaderValue(t *testing.T) {
	if got := MustParse("1.10").HeaderValue(); got != "container-infra 1.10" {
		t.Errorf("HeaderValue() = %q", got)
	}
}
