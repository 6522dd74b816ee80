package params

type ListenerConfig struct {
	// Network is the network to listen on.
	// The network must be "tcp", "tcp4", "tcp6", "unix" or "unixpacket".
	Network string
	// Address is the address to listen on.
	Address string
}

type StatusDaemonConfig struct {
	ListenerConfig
	// Token, when set, is required on every API request.
	Token string
}

func DefaultStatusDaemonConfig() *StatusDaemonConfig {
	return &StatusDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3030",
		},
	}
}

func DefaultTestStatusDaemonConfig() *StatusDaemonConfig {
	return &StatusDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
	}
}
