// Package logger expone el logger zap del proceso y su propagación por contexto.
//
// Se inicializa una vez desde cmd/portero:
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "portero"})
//	defer logger.Sync()
//
// Los middlewares HTTP inyectan un logger con request_id; el resto del código
// usa logger.From(ctx) y no necesita saber si hubo inyección o no.
//
// Nunca se registran secretos ni valores de tokens. Para tokens se loguea el
// jti o el id del par persistido (TokenID).
package logger
