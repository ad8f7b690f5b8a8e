/*
Package client contains the hub client: it dials a server over a pluggable
transport, answers the auth handshake and then listens for server
envelopes in the background.

	cfg := common.ClientConfig{
		Endpoint:      "localhost:5000",
		Login:         "alice",
		Password:      "secret",
		Register:      true,
		TimeoutSecond: 30,
		DownloadDir:   "downloads",
	}

	reg := registry.New()
	reg.MustRegister("pong", func(c registry.Caller, args map[string]any) error {
		fmt.Println("server answered")
		return nil
	})

	cl := client.New(cfg, tcp.NewTCPClientConnector(), serializer.NewJSONSerializer(), reg)
	if err := cl.Connect(); err != nil { ... }
	_ = cl.SendNet("ping", nil)
	<-cl.Done()

Incoming envelopes are routed by band: log lines go to the local logger,
file transfers are written into the download directory and network
function invocations are dispatched into the client-side registry.
*/
package client
