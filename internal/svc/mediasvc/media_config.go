package mediasvc

type MediaConfig struct {
	// MaxSize bounds stored objects in bytes, 20 MiB by default.
	MaxSize int64 `env:"MAX_SIZE" default:"20971520"`
}
