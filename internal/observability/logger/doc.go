// Package logger expone un logger Zap global con scoping por contexto.
//
// Init() se llama una sola vez desde cmd/hellomail. Los handlers HTTP reciben un logger
// "scoped" (request_id, user_id) vía ToContext; el scheduler y el dispatcher usan
// From(ctx) y caen al singleton cuando no hay logger en el contexto.
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("dispatch"), logger.EmailID(id))
//	log.Info("email dispatched", logger.Count(n))
package logger
