package utils

import (
	"strings"
	"testing"

	"Courier/internal/constants"
)

func TestValidatePhoneNumber(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+7 (999) 123-45-67", want: "+79991234567"},
		{in: "8 999 123 45 67", want: "+79991234567"},
		{in: "9991234567", want: "+79991234567"},
		{in: "+1 415 555 2671", want: "+14155552671"},
		{in: "", wantErr: true},
		{in: "12345", wantErr: true},
		{in: "+7+999", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ValidatePhoneNumber(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ValidatePhoneNumber(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidatePhoneNumber(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ValidatePhoneNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsRoleOrHigher(t *testing.T) {
	cases := []struct {
		role, required string
		want           bool
	}{
		{constants.ROLE_DRIVER, constants.ROLE_DRIVER, true},
		{constants.ROLE_DISPATCHER, constants.ROLE_DRIVER, true},
		{constants.ROLE_ADMIN, constants.ROLE_DISPATCHER, true},
		{constants.ROLE_DRIVER, constants.ROLE_DISPATCHER, false},
		{constants.ROLE_DISPATCHER, constants.ROLE_ADMIN, false},
		{"customer", constants.ROLE_DRIVER, false},
	}
	for _, tc := range cases {
		if got := IsRoleOrHigher(tc.role, tc.required); got != tc.want {
			t.Errorf("IsRoleOrHigher(%q, %q) = %v, want %v", tc.role, tc.required, got, tc.want)
		}
	}
}

func TestTrackingLink(t *testing.T) {
	id := "3f2b8c2e-5b1a-4f5e-9d3c-2a7b6c1d0e9f"
	link, err := TrackingLink("https://acme.example.com/", id)
	if err != nil {
		t.Fatalf("TrackingLink: %v", err)
	}
	if link != "https://acme.example.com/track/"+id {
		t.Fatalf("unexpected link %q", link)
	}

	if _, err := TrackingLink("", id); err == nil {
		t.Fatal("expected error for empty base url")
	}
	if _, err := TrackingLink("https://acme.example.com", "not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

func TestGenerateTrackingQRCode(t *testing.T) {
	png, err := GenerateTrackingQRCode("https://acme.example.com", "3f2b8c2e-5b1a-4f5e-9d3c-2a7b6c1d0e9f")
	if err != nil {
		t.Fatalf("GenerateTrackingQRCode: %v", err)
	}
	if !strings.HasPrefix(string(png), "\x89PNG") {
		t.Fatal("expected PNG output")
	}
}
