package cmds

var GlobalExecutor = NewExecutor()

// Define registers a command on the package-wide default executor.
// init() functions across the module call this to declare their flags
// before main() calls Execute.
func Define(name string, command *Command) {
	GlobalExecutor.Define(name, command)
}

func Execute(args []string) error {
	return GlobalExecutor.Execute(args)
}

func MustExecute(args []string) {
	GlobalExecutor.MustExecute(args)
}

func PrintUsage() {
	GlobalExecutor.PrintUsage()
}
