package config

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type StoreConfig interface {
	GetStore() string
	GetMongoURI() string
	GetMongoDatabase() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStore() string {
	return GetEnv("STORE", StoreMongo)
}

func (Store) GetMongoURI() string {
	return GetEnv("MONGO_URI", "mongodb://localhost:27017")
}

func (Store) GetMongoDatabase() string {
	return GetEnv("MONGO_DATABASE", "projectmgmt")
}
