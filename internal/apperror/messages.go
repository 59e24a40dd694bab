package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Pricing and routing
	CodeInsufficientLiquidity: "Insufficient liquidity for trade size",
	CodeNoRouteFound:          "No viable route between tokens",
	CodePoolNotFound:          "Pool not found",
	CodeQuoteDriftExceeded:    "Quote drifted beyond tolerance since snapshot",
	CodeInvalidQuote:          "Invalid quote data",
	CodeInvalidTradeSize:      "Invalid trade size",

	// Blockchain/Ethereum
	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeNonceTooLow:              "Transaction nonce too low",
	CodeReplacementUnderpriced:   "Replacement transaction underpriced",
	CodeInsufficientFunds:        "Insufficient funds for transaction",

	// Exchange and order book
	CodeExchangeConnectionFailed: "Failed to connect to exchange API",
	CodeExchangeAPIError:         "Exchange API error",
	CodeExchangeRateLimited:      "Exchange rate limit exceeded",
	CodeOrderbookFetchFailed:     "Failed to fetch orderbook",
	CodeInvalidOrderbook:         "Invalid orderbook data",
	CodeOrderRejected:            "Order rejected by exchange",

	// WebSocket
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Signal generation
	CodeDuplicateSignal: "Signal already seen within replay window",
	CodeSignalExpired:   "Signal expired before execution",
	CodeSignalCooldown:  "Pair is in signal cooldown",

	// Risk gates
	CodePretradeVeto: "Pre-trade validation rejected the signal",
	CodeRiskVeto:     "Risk manager rejected the signal",
	CodeSafetyVeto:   "Safety hard limit rejected the signal",
	CodeKillSwitch:   "Kill switch is active",

	// Execution
	CodeLegTimeout:                "Leg did not fill within timeout",
	CodePartialFillBelowThreshold: "Partial fill below minimum threshold",
	CodeUnwindFailed:              "Failed to unwind first leg",
	CodeExecutionBusy:             "An execution is already in flight",

	// Circuit breaker
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",

	// Cache
	CodeCacheMiss:    "Cache miss",
	CodeCacheExpired: "Cache entry expired",
}
