// Package sandboxtest provides a scripted fake sandbox server for tests.
//
// The server speaks the dataplane's streaming execution protocol on
// /execute/ws and serves sandbox lookups on /v2/sandboxes/boxes/{name}.
// Each WebSocket connection is driven by a Handler, so tests can script
// drops, server reloads and resumed streams:
//
//	srv := sandboxtest.NewServer(t,
//		func(c *sandboxtest.Conn) {
//			c.ReadFrame() // execute
//			c.SendStarted("cmd-1", 42)
//			c.SendStdout("hello\n", 0)
//			c.Drop()
//		},
//		func(c *sandboxtest.Conn) {
//			c.ReadFrame() // reconnect
//			c.SendExit(0)
//		},
//	)
package sandboxtest
