package main

import (
	"testing"

	"sonara/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", AdminPassword: "admin-secret-1"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", AdminPassword: ""},
		{AuthSecret: "0123456789abcdef0123456789abcdef", AdminPassword: "short"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", AdminPassword: "admin-secret-1", ClerkPassword: "tiny"},
	}
	for i, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("case %d: expected weak security config to be rejected", i)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		AdminPassword: "admin-secret-1",
		ClerkPassword: "clerk-secret-1",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
