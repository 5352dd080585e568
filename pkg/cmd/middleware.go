package cmd

// Middleware wraps a command. The result must still satisfy Command.
type Middleware func(Command) Command

// Apply wraps c with mws; the last middleware becomes the outermost.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}
