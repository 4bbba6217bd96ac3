package wechat

import (
	"regexp"
	"testing"
)

func TestGenerateOutTradeNoFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^ORDER_\d+_[0-9A-F]{8}$`)
	no := GenerateOutTradeNo()
	if !pattern.MatchString(no) {
		t.Fatalf("unexpected trade no format: %s", no)
	}
}

func TestGenerateOutTradeNoUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		no := GenerateOutTradeNo()
		if seen[no] {
			t.Fatalf("duplicate trade no generated: %s", no)
		}
		seen[no] = true
	}
}
