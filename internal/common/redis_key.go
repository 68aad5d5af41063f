package common

import (
	"fmt"
	"strings"
)

func RedisKeyAddressLock(address string) string {
	return fmt.Sprintf("addresslock:%s", strings.ToLower(address))
}
