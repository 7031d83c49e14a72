// Package api is the HTTP side of the DebtEase client.
//
// A Client builds request URLs from path templates, keeps the access token
// fresh (one refresh in flight at a time), attaches the bearer credential and
// normalizes every outcome into either a payload or an *APIError. The
// Reader/Creator/Editor/Deleter hooks wrap a Client with {Data, Loading, Err}
// state for callers that render results.
package api
