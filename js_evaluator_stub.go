//go:build !js_eval

package store

// NewJSEvaluator is only available in builds tagged js_eval. Without the tag
// it returns nil and WithEvaluator(nil) falls back to expr.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = collectJSSettings(opts)
	return nil
}

func jsEvaluatorAvailable() bool { return false }
