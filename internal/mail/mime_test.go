package mail

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMIME(t *testing.T) {
	raw, err := BuildMIME("ana@gmail.com", Message{
		To:       "bob@x.com",
		Subject:  "Promo de otoño",
		HTMLBody: "<h1>Hola</h1>",
	})
	require.NoError(t, err)

	s := string(raw)
	require.Contains(t, s, "From: ana@gmail.com")
	require.Contains(t, s, "To: bob@x.com")
	require.Contains(t, s, "Content-Type: text/html; charset=UTF-8")
	require.Contains(t, s, "<h1>Hola</h1>")
	// subject no ASCII va codificado (RFC 2047)
	require.Contains(t, s, "Subject: =?UTF-8?")
}

func TestBuildMIME_NoRecipient(t *testing.T) {
	_, err := BuildMIME("a@x.com", Message{Subject: "x"})
	require.Error(t, err)
}
