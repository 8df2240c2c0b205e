package supabase

import "strings"

// Error models the JSON error body returned by the GoTrue admin API. Older
// deployments use msg/message, newer ones add a stable error_code.
type Error struct {
	Code           int    `json:"code"`
	ErrorCode      string `json:"error_code"`
	Msg            string `json:"msg"`
	Message        string `json:"message"`
	ErrorDescr     string `json:"error_description"`
	HTTPStatusCode int    `json:"httpStatusCode"`
}

func (e Error) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorDescr
}

func (e Error) any() bool {
	return e.ErrorCode != "" || e.message() != "" || e.Code != 0
}

// isDuplicateUser classifies an auth error as "account already exists". The
// structured error_code is authoritative; the substring check covers
// deployments that predate error codes and is deliberately kept in this one
// predicate so the fragility stays contained.
func isDuplicateUser(errorCode, msg string) bool {
	switch errorCode {
	case "email_exists", "user_already_exists", "phone_exists":
		return true
	}
	m := strings.ToLower(msg)
	if strings.Contains(m, "already") && strings.Contains(m, "exist") {
		return true
	}
	return strings.Contains(m, "duplicate")
}
