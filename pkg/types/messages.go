package types

// Client -> Server
// createRoom:
//   data: string (display name)
//
// joinRoom:
//   roomCode: string (6 chars, case-insensitive)
//   name: string ("playerName" also accepted)
//
// ready: {}
//
// gameUpdate (relayed verbatim):
//   board: any
//   score: number
//   currentPiece: any
//   currentPos: any
//
// gameOver:
//   score: number
//
// playAgain: {}
//
// exitGame: {}

// Server -> Client
// roomCreated / roomJoined:
//   roomCode: string
//   playerIndex: 0 | 1
//
// playerUpdate:
//   players: [{ name: string, ready: boolean }]
//
// gameStart / gameRestart:
//   seed: number
//
// opponentUpdate: the peer's gameUpdate payload, byte for byte
//
// opponentGameOver:
//   score: number
//
// gameEnd:
//   winner: 0 | 1 | -1
//   scores: [{ name: string, score: number }]
//
// waitingForRematch, opponentWantsRematch, exitToMenu, opponentLeft: no data
//
// error: string

const (
	CreateRoom = "createRoom"
	JoinRoom   = "joinRoom"
	Ready      = "ready"
	GameUpdate = "gameUpdate"
	GameOver   = "gameOver"
	PlayAgain  = "playAgain"
	ExitGame   = "exitGame"
)

const (
	RoomCreated          = "roomCreated"
	RoomJoined           = "roomJoined"
	PlayerUpdate         = "playerUpdate"
	GameStart            = "gameStart"
	OpponentUpdate       = "opponentUpdate"
	OpponentGameOver     = "opponentGameOver"
	GameEnd              = "gameEnd"
	WaitingForRematch    = "waitingForRematch"
	OpponentWantsRematch = "opponentWantsRematch"
	GameRestart          = "gameRestart"
	ExitToMenu           = "exitToMenu"
	OpponentLeft         = "opponentLeft"
	Error                = "error"
)
