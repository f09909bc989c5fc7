package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CartSessionHeader = "X-Cart-Session"
	cartSessionKey    = "cart_session"
)

// CartSession resolves which session cart a request works on. Signed-in users
// own "user:<id>"; guests carry a UUID in X-Cart-Session, issued on first use.
// Must run after OptionalAuthenticate or Authenticate.
func CartSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := GetUserID(c); ok {
			c.Set(cartSessionKey, UserCartSession(userID))
			c.Next()
			return
		}

		guest := c.GetHeader(CartSessionHeader)
		if _, err := uuid.Parse(guest); err != nil {
			guest = uuid.NewString()
		}
		c.Header(CartSessionHeader, guest)
		c.Set(cartSessionKey, "guest:"+guest)
		c.Next()
	}
}

// UserCartSession is the cart key of a signed-in user
func UserCartSession(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// GetCartSession returns the key set by CartSession
func GetCartSession(c *gin.Context) (string, bool) {
	s := c.GetString(cartSessionKey)
	return s, s != ""
}

// GuestCartSession returns the guest key from the header, if any, so a guest
// cart can be merged after sign-in
func GuestCartSession(c *gin.Context) (string, bool) {
	guest := c.GetHeader(CartSessionHeader)
	if _, err := uuid.Parse(guest); err != nil {
		return "", false
	}
	return "guest:" + guest, true
}
