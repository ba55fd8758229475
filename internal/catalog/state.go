package catalog

// State は一覧画面が描画すべき状態を表す。
// エラー状態はAPIErrorで、読み込み中状態はクライアント側で表現する。
type State string

const (
	// StateEmptyCatalog はストーリーが1件も公開されていない状態。
	StateEmptyCatalog State = "empty_catalog"
	// StateNoResults は絞り込みの結果が0件の状態。
	StateNoResults State = "no_results"
	// StateContent は表示すべき要素がある状態。
	StateContent State = "content"
)

// ResolveState は全件数と一致件数から描画状態を決定する。
func ResolveState(total, matched int) State {
	switch {
	case total == 0:
		return StateEmptyCatalog
	case matched == 0:
		return StateNoResults
	default:
		return StateContent
	}
}
