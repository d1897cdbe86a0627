package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバー（BFF）を起動する。引数なしの既定。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの削除ワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はセッションスキーマのマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの /health を確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if c, ok := commands[args[0]]; ok {
		return c
	}
	return CommandServe
}

// RequiresDatabase はDATABASE_URLなしでは実行できないコマンドかを返す。
// serveはメモリ上のセッションストアで動作する。
func (c Command) RequiresDatabase() bool {
	return c == CommandWorker || c == CommandMigrate
}

// SkipsInit は設定の読み込みを行わずに実行するコマンドかを返す。
func (c Command) SkipsInit() bool {
	return c == CommandHealthcheck
}
