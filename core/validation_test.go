package core

import (
	"testing"
	"time"
)

func TestLuhnValid(t *testing.T) {
	cases := map[string]bool{
		"4111111111111111":     true,
		"4111 1111 1111 1111":  true,
		"5555-5555-5555-4444":  true,
		"378282246310005":      true,
		"4111111111111112":     false,
		"411111111111":         false,
		"41111111111111111111": false,
		"4111x11111111111":     false,
		"":                     false,
	}
	for number, want := range cases {
		if got := LuhnValid(number); got != want {
			t.Fatalf("LuhnValid(%q) = %v, want %v", number, got, want)
		}
	}
}

func TestDetectCardNetwork(t *testing.T) {
	cases := map[string]string{
		"4111111111111111": CardNetworkVisa,
		"5105105105105100": CardNetworkMastercard,
		"5555555555554444": CardNetworkMastercard,
		"378282246310005":  CardNetworkAmex,
		"341111111111111":  CardNetworkAmex,
		"6011111111111117": CardNetworkRuPay,
		"6521111111111111": CardNetworkRuPay,
		"8111111111111111": CardNetworkRuPay,
		"3530111333300000": CardNetworkUnknown,
		"":                 CardNetworkUnknown,
	}
	for number, want := range cases {
		if got := DetectCardNetwork(number); got != want {
			t.Fatalf("DetectCardNetwork(%q) = %q, want %q", number, got, want)
		}
	}
}

func TestExpiryValid(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		month, year string
		want        bool
	}{
		{"6", "2026", true},
		{"06", "26", true},
		{"5", "2026", false},
		{"1", "27", true},
		{"13", "2030", false},
		{"0", "2030", false},
		{"ab", "2030", false},
		{"12", "2025", false},
	}
	for _, tc := range cases {
		if got := ExpiryValid(tc.month, tc.year, now); got != tc.want {
			t.Fatalf("ExpiryValid(%q, %q) = %v, want %v", tc.month, tc.year, got, tc.want)
		}
	}
}

func TestValidVPA(t *testing.T) {
	for vpa, want := range map[string]bool{
		"user@okbank":       true,
		"first.last-1@upi":  true,
		"user@":             false,
		"@bank":             false,
		"user@bank.example": false,
		"us er@bank":        false,
	} {
		if got := ValidVPA(vpa); got != want {
			t.Fatalf("ValidVPA(%q) = %v, want %v", vpa, got, want)
		}
	}
}

func TestCardLast4(t *testing.T) {
	if got := CardLast4("4111 1111 1111 1234"); got != "1234" {
		t.Fatalf("unexpected last4 %q", got)
	}
}
