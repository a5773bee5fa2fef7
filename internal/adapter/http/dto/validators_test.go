package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := MarkFailedRequest{Reason: "  node said <script>alert('x')</script>  "}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
	assert.True(t, req.Reason[0] == 'n', "leading whitespace trimmed")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	s := "  <b>x</b>  "
	v := struct{ Note *string }{Note: &s}
	SanitizeStruct(&v)
	assert.Equal(t, "&lt;b&gt;x&lt;/b&gt;", *v.Note)

	empty := struct{ Note *string }{}
	SanitizeStruct(&empty)
	assert.Nil(t, empty.Note)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

func TestSafeID(t *testing.T) {
	for _, tc := range []string{"key-001", "KEY_002", "a.b.c", "9f1c2d"} {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
	for _, tc := range []string{"key 001", "key<001>", "key;DROP", "", "key\n001"} {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestTipRequest_Binding(t *testing.T) {
	ok := TipRequest{From: "alice", To: "bob", Amount: "0.5"}
	require.NoError(t, binding.Validator.ValidateStruct(&ok))

	bad := TipRequest{From: "alice", To: "bob", Amount: "lots"}
	assert.Error(t, binding.Validator.ValidateStruct(&bad))

	neg := -1
	badMinconf := TipRequest{From: "alice", To: "bob", Amount: "1", Minconf: &neg}
	assert.Error(t, binding.Validator.ValidateStruct(&badMinconf))

	missing := TipRequest{From: "alice", Amount: "1"}
	assert.Error(t, binding.Validator.ValidateStruct(&missing))
}

func TestIdempotencyHeader_Binding(t *testing.T) {
	require.NoError(t, binding.Validator.ValidateStruct(&IdempotencyHeader{}))
	require.NoError(t, binding.Validator.ValidateStruct(&IdempotencyHeader{Key: "order-42"}))
	assert.Error(t, binding.Validator.ValidateStruct(&IdempotencyHeader{Key: "order 42"}))
}
