package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はフィード取り込みとセッション掃除を行うワーカーモードを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	// 続く引数にup（既定）、down、versionを指定できる。
	CommandMigrate Command = "migrate"
	// CommandSeed はYAMLのストーリー定義をストアへ投入することを示す。
	CommandSeed Command = "seed"
	// CommandToken は自動投稿用のBearerトークンを発行することを示す。
	CommandToken Command = "token"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandWorker, CommandMigrate, CommandSeed, CommandToken, CommandHealthcheck:
		return cmd
	default:
		return CommandServe
	}
}

// commandArg はサブコマンドに続くi番目の引数を返す。なければdefaultValを返す。
func commandArg(args []string, i int, defaultVal string) string {
	if len(args) > i+1 && args[i+1] != "" {
		return args[i+1]
	}
	return defaultVal
}
