package mt5

// Credentials are the decrypted login details for one MT5 account.
type Credentials struct {
	Login    int64  `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

// AccountInfo is the broker-side account snapshot returned with every sync.
type AccountInfo struct {
	Login      int64   `json:"login"`
	Server     string  `json:"server"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Profit     float64 `json:"profit"`
	Currency   string  `json:"currency"`
	Leverage   int     `json:"leverage"`
}

// Trade is one closed deal as reported by the broker. Times are epoch
// seconds in the broker platform's local time; a fixed offset correction
// is applied before any date or session derivation. A zero StopLoss or
// TakeProfit means none was set. Identity is (account, DealID).
type Trade struct {
	DealID     int64   `json:"deal_id"`
	Ticket     int64   `json:"ticket"`
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"` // "LONG" or "SHORT"
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"open_price"`
	ClosePrice float64 `json:"close_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	OpenTime   int64   `json:"open_time"`
	CloseTime  int64   `json:"close_time"`
	Profit     float64 `json:"profit"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`
}

// SyncResponse is the full payload of a /sync-account call.
type SyncResponse struct {
	Success     bool        `json:"success"`
	AccountInfo AccountInfo `json:"account_info"`
	Trades      []Trade     `json:"trades"`
	TradesCount int         `json:"trades_count"`
}
