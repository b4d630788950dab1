package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// -----------------------------------------------------------------------------
// Code Tests
// -----------------------------------------------------------------------------

func TestCode_String(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodeInternal, "INTERNAL"},
		{CodeInvalidPayload, "INVALID_PAYLOAD"},
		{CodeDangerousCommand, "DANGEROUS_COMMAND"},
		{CodeNotFound, "NOT_FOUND"},
		{CodeTmuxUnavailable, "TMUX_UNAVAILABLE"},
		{CodeInvalidPane, "INVALID_PANE"},
		{CodeRateLimit, "RATE_LIMIT"},
		{Code(99), "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.String(); got != tt.want {
				t.Errorf("Code.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCode_RoundTrip(t *testing.T) {
	for _, code := range AllCodes() {
		parsed, ok := ParseCode(code.String())
		if !ok {
			t.Errorf("ParseCode(%q) not ok", code.String())
			continue
		}
		if parsed != code {
			t.Errorf("ParseCode(%q) = %v, want %v", code.String(), parsed, code)
		}
	}

	if _, ok := ParseCode("NOPE"); ok {
		t.Error("ParseCode(NOPE) should not be ok")
	}
	if got, ok := ParseCode(" rate_limit "); !ok || got != CodeRateLimit {
		t.Errorf("ParseCode(lowercase) = %v, %v", got, ok)
	}
}

func TestCode_JSON(t *testing.T) {
	payload := struct {
		Code Code `json:"code"`
	}{Code: CodeDangerousCommand}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"code":"DANGEROUS_COMMAND"}` {
		t.Errorf("Marshal = %s", data)
	}

	var decoded struct {
		Code Code `json:"code"`
	}
	if err := json.Unmarshal([]byte(`{"code":"INVALID_PANE"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Code != CodeInvalidPane {
		t.Errorf("decoded.Code = %v, want %v", decoded.Code, CodeInvalidPane)
	}

	if err := json.Unmarshal([]byte(`{"code":"BOGUS"}`), &decoded); err == nil {
		t.Error("Unmarshal of unknown code should fail")
	}
}

func TestCode_Category(t *testing.T) {
	tests := []struct {
		code Code
		want Category
	}{
		{CodeInvalidPayload, CategoryValidation},
		{CodeDangerousCommand, CategoryValidation},
		{CodeNotFound, CategoryOperational},
		{CodeTmuxUnavailable, CategoryOperational},
		{CodeInvalidPane, CategoryOperational},
		{CodeRateLimit, CategoryOperational},
		{CodeInternal, CategoryUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := tt.code.Category(); got != tt.want {
				t.Errorf("Category() = %v, want %v", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// CommandError Tests
// -----------------------------------------------------------------------------

func TestCommandError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{
			name: "message only",
			err:  InvalidPayload("text is empty"),
			want: "INVALID_PAYLOAD: text is empty",
		},
		{
			name: "with stderr",
			err:  Internal("send-keys failed", nil).WithStderr("can't find pane %9\n"),
			want: "INTERNAL: send-keys failed (can't find pane %9)",
		},
		{
			name: "with cause",
			err:  TmuxUnavailable("tmux not installed", fmt.Errorf("exec: not found")),
			want: "TMUX_UNAVAILABLE: tmux not installed: exec: not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandError_Is(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("launch: %w", Internal("window create failed", cause))

	if !Is(err, ErrInternal) {
		t.Error("wrapped internal error should match ErrInternal")
	}
	if !Is(err, cause) {
		t.Error("wrapped error should match its cause")
	}
	if Is(err, ErrNotFound) {
		t.Error("internal error should not match ErrNotFound")
	}
	if !Is(NotFound("session", "dev"), ErrNotFound) {
		t.Error("NotFound should match ErrNotFound")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"command error", Dangerous("rm -rf"), CodeDangerousCommand},
		{"wrapped", Wrap(InvalidPane("x"), "send"), CodeInvalidPane},
		{"foreign", errors.New("plain"), CodeInternal},
		{"nil", nil, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	if got := Message(nil); got != "" {
		t.Errorf("Message(nil) = %q", got)
	}
	if got := Message(RateLimited("retry in %ds", 3)); got != "retry in 3s" {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(Internal("kill failed", nil).WithStderr("oops")); got != "kill failed: oops" {
		t.Errorf("Message() with stderr = %q", got)
	}
	if got := Message(errors.New("plain")); got != "plain" {
		t.Errorf("Message(plain) = %q", got)
	}
}

func TestAsCommandError(t *testing.T) {
	if AsCommandError(nil) != nil {
		t.Error("AsCommandError(nil) should be nil")
	}

	original := NotFound("session", "dev")
	if got := AsCommandError(Wrap(original, "ctx")); got != original {
		t.Error("AsCommandError should unwrap to the original CommandError")
	}

	foreign := AsCommandError(errors.New("plain"))
	if foreign.Code != CodeInternal {
		t.Errorf("foreign error code = %v, want INTERNAL", foreign.Code)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if !IsRetryable(RateLimited("slow down")) {
		t.Error("rate limit should be retryable")
	}
	if IsRetryable(InvalidPayload("bad")) {
		t.Error("validation errors should not be retryable")
	}
	if !IsValidation(Dangerous("x")) {
		t.Error("dangerous command is a validation error")
	}
}
