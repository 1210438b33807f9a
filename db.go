package digestbus

type Database interface {
	Open() error
	Close() error
}
