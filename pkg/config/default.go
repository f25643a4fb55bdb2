package config

type Postgres struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	DB       string `koanf:"db"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`
}

type HttpServer struct {
	Address string `koanf:"address"`
}

type NATS struct {
	URL    string `koanf:"url"`
	Prefix string `koanf:"prefix"`
}

type Tracing struct {
	AgentHost   string `koanf:"agent_host"`
	ServiceName string `koanf:"service_name"`
}
