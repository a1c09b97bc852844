// Package api contains the HTTP handlers for the clipstream REST surface:
// account registration and login, refresh-token rotation, profile and media
// asset updates, and video publishing. Handlers coordinate the repository
// and the asset store so that neither ends up referencing objects the other
// no longer knows about.
package api
