package constant

type Key string

const (
	ClientIP  Key = "client-ip"
	SessionID Key = "session-id"
)
