package safeurl

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_SchemeGate(t *testing.T) {
	// WHAT: Only http and https pass; everything else is ErrUnsafeScheme.
	// WHY: Thread URLs are fetched server-side; file:// or gopher:// would be
	// an SSRF/local-read primitive.
	for _, raw := range []string{
		"file:///etc/passwd",
		"gopher://example.com",
		"ftp://example.com/x",
	} {
		if err := Validate(raw); !errors.Is(err, ErrUnsafeScheme) {
			t.Errorf("Validate(%q) = %v, want ErrUnsafeScheme", raw, err)
		}
	}
}

func TestValidate_PrivateAddresses(t *testing.T) {
	// WHAT: Literal private/loopback IPs are rejected.
	// WHY: The mirror must not be usable to probe internal networks.
	for _, raw := range []string{
		"http://127.0.0.1/board",
		"http://10.1.2.3/board",
		"http://192.168.0.10/board",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/board",
	} {
		if err := Validate(raw); !errors.Is(err, ErrSSRF) {
			t.Errorf("Validate(%q) = %v, want ErrSSRF", raw, err)
		}
	}
}

func TestValidate_MissingHost(t *testing.T) {
	// WHAT: http URLs without a host are rejected.
	// WHY: They cannot identify a thread and confuse the fetch client.
	if err := Validate("http:///path/only"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestLimitedReadAll_Bounds(t *testing.T) {
	// WHAT: Reads up to the limit succeed; one byte over fails.
	// WHY: A hostile page must not balloon memory during a refresh.
	data, err := LimitedReadAll(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Fatalf("within limit: data=%q err=%v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("123456"), 5); err == nil {
		t.Error("expected error past the limit")
	}
}
