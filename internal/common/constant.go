package common

// AuthorizationHeaderName is the gRPC metadata / HTTP header key that carries
// the bearer access token on inbound requests.
const AuthorizationHeaderName = "authorization"

// BearerPrefix is the credential scheme expected in the authorization header.
const BearerPrefix = "Bearer "

// GenericAuthFailure is the single externally visible message for every
// verification failure. Internal failure kinds are logged, never returned.
const GenericAuthFailure = "invalid or expired token"
