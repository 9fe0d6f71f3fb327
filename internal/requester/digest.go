package requester

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// digestChallenge holds the parameters of a WWW-Authenticate: Digest
// challenge.
type digestChallenge struct {
	realm     string
	nonce     string
	opaque    string
	algorithm string
	qop       string
}

// parseDigestChallenge parses the comma-separated parameter list of a
// Digest challenge header.
func parseDigestChallenge(header string) (digestChallenge, error) {
	var ch digestChallenge

	trimmed := strings.TrimSpace(header)
	if len(trimmed) < len("digest ") || !strings.EqualFold(trimmed[:len("digest ")], "digest ") {
		return ch, fmt.Errorf("not a digest challenge: %q", header)
	}

	for _, part := range splitChallengeParams(trimmed[len("digest "):]) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch key {
		case "realm":
			ch.realm = value
		case "nonce":
			ch.nonce = value
		case "opaque":
			ch.opaque = value
		case "algorithm":
			ch.algorithm = value
		case "qop":
			ch.qop = value
		}
	}

	if ch.nonce == "" {
		return ch, fmt.Errorf("digest challenge missing nonce")
	}
	return ch, nil
}

// splitChallengeParams splits on commas outside quoted strings; qop
// values like "auth,auth-int" are themselves comma-separated.
func splitChallengeParams(s string) []string {
	var parts []string
	var b strings.Builder
	inQuotes := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == ',' && !inQuotes:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}

// digestAuthorization computes the Authorization header value for one
// request per RFC 2617 (MD5 and MD5-sess, qop auth). The cnonce is a
// parameter so tests can pin it.
func digestAuthorization(method, uri string, creds *Credentials, header, cnonce string) (string, error) {
	ch, err := parseDigestChallenge(header)
	if err != nil {
		return "", err
	}

	ha1 := md5Hex(fmt.Sprintf("%s:%s:%s", creds.Username, ch.realm, creds.Password))
	if strings.EqualFold(ch.algorithm, "MD5-sess") {
		ha1 = md5Hex(fmt.Sprintf("%s:%s:%s", ha1, ch.nonce, cnonce))
	}
	ha2 := md5Hex(fmt.Sprintf("%s:%s", method, uri))

	const nc = "00000001"
	useQop := qopAuth(ch.qop)

	var response string
	if useQop {
		response = md5Hex(fmt.Sprintf("%s:%s:%s:%s:auth:%s", ha1, ch.nonce, nc, cnonce, ha2))
	} else {
		response = md5Hex(fmt.Sprintf("%s:%s:%s", ha1, ch.nonce, ha2))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s"`,
		creds.Username, ch.realm, ch.nonce, uri, response)
	if useQop {
		fmt.Fprintf(&b, `, qop=auth, nc=%s, cnonce="%s"`, nc, cnonce)
	}
	if ch.opaque != "" {
		fmt.Fprintf(&b, `, opaque="%s"`, ch.opaque)
	}
	if ch.algorithm != "" {
		fmt.Fprintf(&b, `, algorithm=%s`, ch.algorithm)
	}
	return b.String(), nil
}

// qopAuth reports whether the server offers qop=auth. auth-int is not
// supported; a challenge offering only auth-int falls back to the
// RFC 2069 computation, which the device will reject with another 401.
func qopAuth(qop string) bool {
	for _, part := range strings.Split(qop, ",") {
		if strings.TrimSpace(part) == "auth" {
			return true
		}
	}
	return false
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// randomCnonce returns 16 hex chars of client nonce.
func randomCnonce() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
