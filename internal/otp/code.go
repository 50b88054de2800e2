// Package otp issues and verifies one-time codes bound to payment intents.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

// GenerateCode returns a CodeLength-digit numeric code.
func GenerateCode() (string, error) {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, CodeLength)
	for i := range b {
		s[i] = '0' + (b[i] % 10)
	}
	return string(s), nil
}

// codesEqual compares in constant time. Empty codes never match.
func codesEqual(submitted, stored string) bool {
	if submitted == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1
}
