// Package google handles OAuth2 authentication against Google APIs and the
// on-disk token storage for one or more accounts.
package google
