// Package vapid converts server-issued VAPID public keys between the URL-safe
// base64 form used on the wire and the raw bytes a push channel is opened with.
//
// Keys usually arrive without padding:
//
//	key, err := vapid.DecodeServerKey("BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM")
//	if errors.Is(err, vapid.ErrInvalidKeyFormat) {
//	    // server misconfiguration; abort this subscribe attempt
//	}
package vapid
