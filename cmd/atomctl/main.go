// atomctl 在命令行中读写 stream 条目，也可以启动一个进程内的存储用于本地调试。
//
//	atomctl [flags] write <stream> <key> <value> [<key> <value> ...]
//	atomctl [flags] read <stream> [n]
//	atomctl [flags] since <stream> <last-id> [n]
//	atomctl [flags] script <path>
//	atomctl [flags] serve
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"atom/config"
	"atom/element"
	"atom/lib/logger"
	"atom/lib/utils"
	"atom/redis"
	"atom/redistest"
	"atom/serialization"
	"atom/tcp"
)

const envConfig = "ATOM_CONFIG"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	host       string
	port       int
	socket     string
	useSocket  bool
	timeout    time.Duration
	method     string
	name       string
	logLevel   string
	listen     string
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	opts := &options{}
	flagSet := pflag.NewFlagSet("atomctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", os.Getenv(envConfig), "path to a .toml or .yaml config file (env "+envConfig+")")
	flagSet.StringVar(&opts.host, "host", "", "redis host (overrides config)")
	flagSet.IntVarP(&opts.port, "port", "p", 0, "redis port (overrides config)")
	flagSet.StringVar(&opts.socket, "socket", "", "redis unix socket path (overrides config)")
	flagSet.BoolVar(&opts.useSocket, "unix", false, "connect through the unix socket")
	flagSet.DurationVar(&opts.timeout, "timeout", 0, "per-command timeout (overrides config)")
	flagSet.StringVarP(&opts.method, "method", "m", "none", "serialization method: none, msgpack or cbor")
	flagSet.StringVar(&opts.name, "element", "", "element name (overrides config)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	flagSet.StringVar(&opts.listen, "listen", "127.0.0.1:6379", "listen address for serve")
	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, flagSet.Args(), nil
}

// 按 命令行 > 配置文件 > 默认值 合并配置
func (o *options) properties() (*config.ServerProperties, error) {
	props := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		props = loaded
	}
	if o.host != "" {
		props.Redis.Host = o.host
	}
	if o.port != 0 {
		props.Redis.Port = o.port
	}
	if o.socket != "" {
		props.Redis.Socket = o.socket
	}
	if o.useSocket {
		props.Redis.UseSocket = true
	}
	if o.timeout > 0 {
		props.Redis.TimeoutMs = int(o.timeout.Milliseconds())
	}
	if o.name != "" {
		props.Element = o.name
	}
	if props.Element == "" {
		props.Element = "atomctl-" + utils.RandString(6)
	}
	if o.logLevel != "" {
		props.Log.Level = o.logLevel
	}
	return props, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if len(rest) == 0 {
		return errors.New("missing command: write, read, since, script or serve")
	}
	props, err := opts.properties()
	if err != nil {
		return err
	}
	logger.DefaultLogger = logger.NewWriterLogger(stderr, props.Log.Level)

	if rest[0] == "serve" {
		return serve(opts.listen, stdout)
	}

	method, err := serialization.ParseMethod(opts.method)
	if err != nil {
		return fmt.Errorf("unknown serialization method %q", opts.method)
	}

	var conn *redis.Connection
	if props.Redis.UseSocket {
		conn = redis.NewUnix(props.Redis.Socket, redis.WithTimeout(props.Timeout()))
	} else {
		conn = redis.NewTCP(props.Redis.Host, props.Redis.Port, redis.WithTimeout(props.Timeout()))
	}
	ctx, cancel := context.WithTimeout(context.Background(), props.Timeout()+time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", conn.RemoteAddr(), err)
	}
	defer func() {
		_ = conn.Disconnect()
	}()

	ser, err := serialization.New()
	if err != nil {
		return err
	}
	elem := element.New(props.Element, conn, ser, props)

	switch rest[0] {
	case "write":
		return writeEntry(elem, conn, rest[1:], method, stdout)
	case "read":
		if len(rest) < 2 {
			return errors.New("usage: read <stream> [n]")
		}
		n, err := optionalCount(rest[2:], 10)
		if err != nil {
			return err
		}
		reply, err := elem.EntryReadN(rest[1], n)
		return printEntries(elem, conn, reply, err, method, stdout)
	case "since":
		if len(rest) < 3 {
			return errors.New("usage: since <stream> <last-id> [n]")
		}
		n, err := optionalCount(rest[3:], 10)
		if err != nil {
			return err
		}
		reply, err := elem.EntryReadSince(rest[1], rest[2], n)
		return printEntries(elem, conn, reply, err, method, stdout)
	case "script":
		if len(rest) != 2 {
			return errors.New("usage: script <path>")
		}
		reply, err := conn.LoadScript(rest[1])
		defer conn.ReleaseRxBuffer(reply)
		if err != nil {
			return err
		}
		values, err := reply.Values()
		if err != nil || len(values) == 0 {
			return errors.New("empty reply to SCRIPT LOAD")
		}
		fmt.Fprintln(stdout, color.GreenString("%s", values[0]))
		return nil
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func optionalCount(args []string, fallback int) (int, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count %q", args[0])
	}
	return n, nil
}

func writeEntry(elem *element.Element, conn *redis.Connection, args []string, method serialization.Method, stdout io.Writer) error {
	if len(args) < 1 {
		return errors.New("usage: write <stream> <key> <value> [<key> <value> ...]")
	}
	data := make([]any, 0, len(args)-1)
	for _, arg := range args[1:] {
		data = append(data, arg)
	}
	reply, err := elem.EntryWrite(args[0], data, method)
	defer conn.ReleaseRxBuffer(reply)
	if err != nil {
		return err
	}
	values, err := reply.Values()
	if err != nil || len(values) == 0 {
		return errors.New("empty reply to XADD")
	}
	fmt.Fprintln(stdout, color.GreenString("%s", values[0]))
	return nil
}

func printEntries(elem *element.Element, conn *redis.Connection, reply *redis.Reply, err error, method serialization.Method, stdout io.Writer) error {
	defer conn.ReleaseRxBuffer(reply)
	if err != nil {
		return err
	}
	entries, err := reply.Entries()
	if err != nil {
		return err
	}
	id := color.New(color.FgCyan).SprintFunc()
	key := color.New(color.FgYellow).SprintFunc()
	for _, entry := range entries {
		data, err := elem.DecodeEntry(entry, method)
		if err != nil {
			fmt.Fprintf(stdout, "%s %s\n", id(string(entry.ID)), color.RedString("<not %s>", method))
			continue
		}
		fmt.Fprint(stdout, id(string(entry.ID)))
		for i := 0; i+1 < len(data); i += 2 {
			fmt.Fprintf(stdout, " %s=%s", key(data[i]), formatValue(data[i+1]))
		}
		fmt.Fprintln(stdout)
	}
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []byte:
		return strconv.Quote(string(val))
	case string:
		return strconv.Quote(val)
	default:
		return fmt.Sprint(val)
	}
}

// serve 在 addr 上启动进程内存储，收到退出信号后返回
func serve(addr string, stdout io.Writer) error {
	store := redistest.NewStore()
	fmt.Fprintln(stdout, color.GreenString("serving in-memory store on %s", addr))
	return tcp.ListenAndServeWithSignal(&tcp.Config{Address: addr}, store)
}
