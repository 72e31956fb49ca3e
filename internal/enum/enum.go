package enum

// ── Order lifecycle (forward-only; terminal moves are collection moves) ──

const (
	OrderStatusWaiting = "WAITING"
	OrderStatusCooking = "COOKING"
	OrderStatusServed  = "SERVED"
)

// ── Branch-scoped collection keys ──

const (
	CollectionActiveOrders    = "activeOrders"
	CollectionCompletedOrders = "completedOrders"
	CollectionCancelledOrders = "cancelledOrders"
	CollectionTables          = "tables"
	CollectionSettings        = "settings"
)

// ── Global collection keys ──

const (
	CollectionBranches = "branches"
	CollectionUsers    = "users"
)

// ── Roles ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleKitchen = "KITCHEN"
)

// ── Payment methods (labels only, no constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodCard     = "CARD"
	PaymentMethodQRIS     = "QRIS"
	PaymentMethodTransfer = "TRANSFER"
)
