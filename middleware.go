package store

import (
	"time"

	"go.uber.org/zap"
)

// Thunk is an action that runs a function instead of reaching the reducer.
// It is handled by ThunkMiddleware and never persisted on its own; the plain
// actions it dispatches are.
type Thunk func(dispatch DispatchFunc, getState func() State) (any, error)

func (Thunk) ActionType() string { return ThunkActionType }

// ThunkMiddleware executes Thunk actions with the full dispatch chain and
// returns their result.
func ThunkMiddleware(api API) func(next DispatchFunc) DispatchFunc {
	return func(next DispatchFunc) DispatchFunc {
		return func(action Action) (any, error) {
			if thunk, ok := action.(Thunk); ok {
				if thunk == nil {
					return nil, ErrNilAction
				}
				return thunk(api.Dispatch, api.GetState)
			}
			return next(action)
		}
	}
}

// LoggingMiddleware logs every action at debug level and failed dispatches
// at warn level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(api API) func(next DispatchFunc) DispatchFunc {
		return func(next DispatchFunc) DispatchFunc {
			return func(action Action) (any, error) {
				start := time.Now()
				result, err := next(action)
				fields := []zap.Field{
					zap.String("action", action.ActionType()),
					zap.Duration("duration", time.Since(start)),
				}
				if err != nil {
					logger.Warn("dispatch failed", append(fields, zap.Error(err))...)
					return result, err
				}
				logger.Debug("dispatch", fields...)
				return result, nil
			}
		}
	}
}
