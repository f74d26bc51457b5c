// Package client talks to the issuer API used by gwctl: the device login
// endpoints and the shared resty transport also used for key-set fetches.
package client
