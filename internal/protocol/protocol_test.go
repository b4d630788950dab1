package protocol

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/Iron-Ham/panedrive/internal/errors"
)

func TestActionFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, `{"ok":true}`},
		{"coded failure", errors.Dangerous("blocked"), `{"ok":false,"error":{"code":"DANGEROUS_COMMAND","message":"blocked"}}`},
		{"stderr appended", errors.Internal("send-keys failed", nil).WithStderr("bad key"), `{"ok":false,"error":{"code":"INTERNAL","message":"send-keys failed: bad key"}}`},
		{"foreign error", fmt.Errorf("boom"), `{"ok":false,"error":{"code":"INTERNAL","message":"boom"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(ActionFrom(tt.err))
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

func TestErrorBody_Unmarshal(t *testing.T) {
	var body ErrorBody
	if err := json.Unmarshal([]byte(`{"code":"RATE_LIMIT","message":"slow down"}`), &body); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if body.Code != errors.CodeRateLimit || body.Message != "slow down" {
		t.Errorf("got %+v", body)
	}
}
