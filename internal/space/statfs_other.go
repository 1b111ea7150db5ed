//go:build !(linux || darwin || freebsd)

package space

func statfsFree(string) (int64, error) {
	return 0, ErrUnsupported
}
