// Package session mints and validates the tokens that identify a
// logged in account across requests.
//
// A token binds a user id to the moment it was issued and is honored
// for MaxAge after that moment; using a token does not extend its life.
// The wire format is decided by a Codec:
//
//   - JWTCodec: HS256 signed JWT, the default.
//   - SealedCodec: the payload encrypted and authenticated with AES-GCM.
//   - LegacyCodec: base64 encoded JSON without any integrity protection.
//     Anyone can forge a LegacyCodec token for any user id, so it only
//     exists to read tokens issued by older deployments and for tests.
//
// Keys for the signed codecs are derived from a single root key, which
// is read from the environment and removed from it right away.
package session
