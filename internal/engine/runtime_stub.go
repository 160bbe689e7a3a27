//go:build !govips || !cgo

package engine

func Startup(Options) error {
	return nil
}

func Shutdown() {}

func newEngine(opts Options) (Engine, error) {
	return newStdEngine(opts), nil
}
