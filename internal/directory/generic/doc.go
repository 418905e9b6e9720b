// Package generic implements the RemoteDirectory port against a plain
// JSON gateway, for providers without a first-class connector. Any
// service that exposes the small changes/push/remove surface can be
// synced by pointing base_url at it.
//
// The wire contract:
//
//	GET    {base}/v1/{kind}s/changes?cursor={c}  incremental change page
//	POST   {base}/v1/{kind}s                     create a record
//	PUT    {base}/v1/{kind}s/{id}                update a record
//	DELETE {base}/v1/{kind}s/{id}                delete a record
//	GET    {base}/v1/ping                        credential check
//
// The cursor is opaque to the engine; the gateway answers 410 Gone when
// it can no longer serve one, which surfaces as domain.ErrInvalidCursor.
package generic
