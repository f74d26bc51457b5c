// Package auth implements the device login flow against the issuer API and the
// stores that keep the resulting credential between invocations.
package auth
