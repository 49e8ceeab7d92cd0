package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Swing Trader Configuration

[universe]
# Symbols scanned by pool creation (Yahoo tickers, .NS for NSE)
symbols = [
  "RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "INFY.NS", "HINDUNILVR.NS",
  "ICICIBANK.NS", "BHARTIARTL.NS", "SBIN.NS", "BAJFINANCE.NS", "LICI.NS",
  "ITC.NS", "HCLTECH.NS", "AXISBANK.NS", "KOTAKBANK.NS", "LT.NS",
  "ASIANPAINT.NS", "MARUTI.NS", "TITAN.NS", "ULTRACEMCO.NS", "SUNPHARMA.NS",
  "NESTLEIND.NS", "ONGC.NS", "NTPC.NS", "POWERGRID.NS", "M&M.NS",
  "TATAMOTORS.NS", "WIPRO.NS", "ADANIENT.NS", "JSWSTEEL.NS", "COALINDIA.NS",
]
# Daily sessions to look back for trend detection
lookback_days = 30

[data]
# Market data source: "yahoo", "kite" or "replay"
source = "yahoo"
# CSV of bars (symbol,date,open,high,low,close,volume) for the replay source
replay_file = ""
# Per-request timeout
timeout = "20s"
# Symbols processed in parallel
concurrency = 4
# Request pacing shared by all workers (0 disables the limit)
requests_per_second = 2.0
burst = 2
# Retries after a failed request
max_retries = 3
# Cache daily bars in the SQLite database between runs
cache = true
# Stop calling the source for breaker_cooldown after this many consecutive
# failed fetches (0 disables)
breaker_threshold = 5
breaker_cooldown = "2m"

[detector]
# Require all three Heiken Ashi candles to be red
require_all_red = true
# Drop patterns whose level was already crossed after the newest candle
check_reversal = true

[finalize]
# "heiken_ashi" (same-day HA breakout) or "price" (latest price above level)
mode = "heiken_ashi"

[output]
pool_file = "data/pool.csv"
signals_file = "data/final_stocks.csv"
# SQLite database for the bar cache and run history (defaults to swing.db here)
database = ""

[schedule]
# Cron expressions used by the daemon
finalize_cron = "15 15 * * 1-5"
pool_cron = "30 16 * * 1-5"
timezone = "Asia/Kolkata"

[calendar]
# Exchange holidays, YYYY-MM-DD. Weekends are always closed.
holidays = []

[logging]
# debug, info, warn, error
level = "info"
# Rotating log file (defaults to logs/swing-trader.log here)
file = ""
max_size = 20
max_backups = 5
max_age = 30

[notifications]
enabled = false

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = false
bot_token = ""
chat_id = ""
`

const credentialsTemplate = `# Swing Trader Credentials
# WARNING: Keep this file secure! Do not commit to version control.

[kite]
api_key = ""
api_secret = ""
access_token = ""
`

// createTemplate writes content to configDir/name unless the file exists.
func createTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}
