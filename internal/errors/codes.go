package errors

// API error codes. Format: CATEGORY_SPECIFIC_DETAIL.
// The storefront maps these to user-facing copy.

const (
	// ==================== AUTH_ ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"        // login required
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS" // wrong email or password
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED" // logged out
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"
	AuthAccountDeactivated = "AUTH_ACCOUNT_DEACTIVATED"
	AuthWeakPassword       = "AUTH_WEAK_PASSWORD"

	// ==================== AUTHZ_ ====================
	AuthzForbidden = "AUTHZ_FORBIDDEN"
	AuthzAdminOnly = "AUTHZ_ADMIN_ONLY"

	// ==================== VALIDATION_ ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID     = "VALIDATION_INVALID_ID"
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT"
	ValidationRequired      = "VALIDATION_REQUIRED"

	// ==================== RESOURCE_ ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== CATALOG_ / CART_ ====================
	CatalogItemNotFound  = "CATALOG_ITEM_NOT_FOUND"
	CategoryNotFound     = "CATEGORY_NOT_FOUND"
	CartEmpty            = "CART_EMPTY"
	CartQuantityTooLarge = "CART_QUANTITY_TOO_LARGE"
	CartSessionMissing   = "CART_SESSION_MISSING"

	// ==================== ORDER_ ====================
	OrderNotFound          = "ORDER_NOT_FOUND"
	OrderNotCancellable    = "ORDER_NOT_CANCELLABLE"
	OrderPersistenceFailed = "ORDER_PERSISTENCE_FAILED" // retryable, nothing was charged

	// ==================== CHECKOUT_ / PAYMENT_ ====================
	CheckoutLoginRequired       = "CHECKOUT_LOGIN_REQUIRED"
	CheckoutAttemptNotFound     = "CHECKOUT_ATTEMPT_NOT_FOUND"
	CheckoutNotAwaitingPayment  = "CHECKOUT_NOT_AWAITING_PAYMENT"
	CheckoutDuplicateRequest    = "CHECKOUT_DUPLICATE_REQUEST"
	PaymentFailed               = "PAYMENT_FAILED"
	PaymentCancelled            = "PAYMENT_CANCELLED"
	PaymentSignatureInvalid     = "PAYMENT_SIGNATURE_INVALID"
	PaymentCapturedNotConfirmed = "PAYMENT_CAPTURED_CONFIRMATION_PENDING" // contact support

	// ==================== ADDRESS_ / WISHLIST_ / NOTIFICATION_ ====================
	AddressNotFound      = "ADDRESS_NOT_FOUND"
	WishlistItemNotFound = "WISHLIST_ITEM_NOT_FOUND"
	NotificationNotFound = "NOTIFICATION_NOT_FOUND"

	// ==================== UPLOAD_ ====================
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"
	UploadFailed          = "UPLOAD_FAILED"

	// ==================== INTERNAL_ ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
)
