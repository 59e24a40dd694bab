package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Pricing and routing error codes
const (
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeNoRouteFound          Code = "NO_ROUTE_FOUND"
	CodePoolNotFound          Code = "POOL_NOT_FOUND"
	CodeQuoteDriftExceeded    Code = "QUOTE_DRIFT_EXCEEDED"
	CodeInvalidQuote          Code = "INVALID_QUOTE"
	CodeInvalidTradeSize      Code = "INVALID_TRADE_SIZE"

	// Blockchain/Ethereum
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "RPC_ERROR"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeNonceTooLow              Code = "NONCE_TOO_LOW"
	CodeReplacementUnderpriced   Code = "REPLACEMENT_UNDERPRICED"
	CodeInsufficientFunds        Code = "INSUFFICIENT_FUNDS"
)

// Exchange and order book error codes
const (
	CodeExchangeConnectionFailed Code = "EXCHANGE_CONNECTION_FAILED"
	CodeExchangeAPIError         Code = "EXCHANGE_API_ERROR"
	CodeExchangeRateLimited      Code = "EXCHANGE_RATE_LIMITED"
	CodeOrderbookFetchFailed     Code = "ORDERBOOK_FETCH_FAILED"
	CodeInvalidOrderbook         Code = "INVALID_ORDERBOOK"
	CodeOrderRejected            Code = "ORDER_REJECTED"

	// WebSocket
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketReconnecting    Code = "WEBSOCKET_RECONNECTING"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"
)

// Signal, risk, and execution error codes
const (
	// Signal generation
	CodeDuplicateSignal Code = "DUPLICATE_SIGNAL"
	CodeSignalExpired   Code = "SIGNAL_EXPIRED"
	CodeSignalCooldown  Code = "SIGNAL_COOLDOWN"

	// Risk gates
	CodePretradeVeto Code = "PRETRADE_VETO"
	CodeRiskVeto     Code = "RISK_VETO"
	CodeSafetyVeto   Code = "SAFETY_VETO"
	CodeKillSwitch   Code = "KILL_SWITCH_ACTIVE"

	// Execution
	CodeLegTimeout                Code = "LEG_TIMEOUT"
	CodePartialFillBelowThreshold Code = "PARTIAL_FILL_BELOW_THRESHOLD"
	CodeUnwindFailed              Code = "UNWIND_FAILED"
	CodeExecutionBusy             Code = "EXECUTION_BUSY"

	// Circuit breaker
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"

	// Cache
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheExpired Code = "CACHE_EXPIRED"
)
