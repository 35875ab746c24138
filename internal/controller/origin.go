// internal/controller/origin.go
package controller

// Origin identifies who asked for a privileged operation.
type Origin int

const (
	// OriginExternalPlayer is a player in the lobby, e.g. through a chat command.
	OriginExternalPlayer Origin = iota
	// OriginLocalOperator is whoever runs this process.
	OriginLocalOperator
	// OriginAutomation is the controller acting on its own settings.
	OriginAutomation
)

func (o Origin) String() string {
	switch o {
	case OriginExternalPlayer:
		return "external-player"
	case OriginLocalOperator:
		return "local-operator"
	case OriginAutomation:
		return "automation"
	}
	return "unknown"
}

// State is the controller's position in the lobby lifecycle.
type State int

const (
	StateNoLobby State = iota
	StateLobbyActive
	StateSwapPending
	StateReady
	StateStarting
)

func (s State) String() string {
	switch s {
	case StateNoLobby:
		return "no-lobby"
	case StateLobbyActive:
		return "lobby-active"
	case StateSwapPending:
		return "swap-pending"
	case StateReady:
		return "ready"
	case StateStarting:
		return "starting"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
