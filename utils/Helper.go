package utils

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	mathRand "math/rand"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unsafe"

	"playcoupon-api/model"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

var IsTestMode bool = false
var ctx = context.Background()
var SessionExpirationTime time.Duration = 1800

// SessionTTL is the single source for session lifetime, used both when the
// token is created and when SecurePath slides it.
func SessionTTL() time.Duration {
	return SessionExpirationTime * time.Minute
}

// LogPool is set from main once the database is up. When nil, LogMessage only
// writes to stdout (tests, early boot).
var LogPool *pgxpool.Pool

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const (
	letterIdxBits = 6                    // 6 bits to represent a letter index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits
)

type LogLevel string

const (
	CRITICAL LogLevel = "critical"
	ERROR    LogLevel = "error"
	WARNING  LogLevel = "warning"
	INFO     LogLevel = "info"
)

type Logger struct {
	LogLevel    LogLevel
	Message     string
	ServiceName string
}

func RandString(n int) string {
	var src = mathRand.NewSource(time.Now().UnixNano())
	b := make([]byte, n)
	// A src.Int63() generates 63 random bits, enough for letterIdxMax characters!
	for i, cache, remain := n-1, src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return *(*string)(unsafe.Pointer(&b))
}

// GenerateCouponCode builds an uppercase claim code like WIN-7GK2PQ9X, used
// when a coupon has no merchant-assigned code.
func GenerateCouponCode(n int) string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			b[i] = alphabet[mathRand.Intn(len(alphabet))]
			continue
		}
		b[i] = alphabet[v.Int64()]
	}
	return "WIN-" + string(b)
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

// preventing application from crashing abruptly. use defer PanicRecover() on top of the codes that may cause panic
func PanicRecover() {
	if r := recover(); r != nil {
		log.Println("Recovered from panic: ", r)
	}
}

func InitializeViper(configName string, configType string) {
	viper.SetConfigName(configName)
	if IsTestMode {
		fmt.Println("Running in Test mode...")
		viper.AddConfigPath("../") // Adjust the path for test environment
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/app")
	}
	viper.AutomaticEnv()
	viper.SetConfigType(configType)
	if viper.AllKeys() == nil {
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal("Error reading config file, ", err)
		}
	} else {
		if err := viper.MergeInConfig(); err != nil {
			log.Fatalf("Error reading config file 2, %s", err)
		}
	}
}

// LogMessage prints the message and persists it to the logs table when the
// pool is available. Returns the trace id attached to the entry.
func LogMessage(logLevel string, message string, service string, forcedTraceId ...string) string {
	fmt.Println(message)
	traceId := RandString(12)
	//manually set log trace id
	if forcedTraceId != nil && forcedTraceId[0] != "" {
		traceId = forcedTraceId[0]
	}
	if LogPool == nil {
		return traceId
	}
	go func() {
		defer PanicRecover()
		insertCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := LogPool.Exec(insertCtx,
			`insert into logs (log_level, service, message, trace_id) values ($1,$2,$3,$4)`,
			logLevel, service, message, traceId)
		if err != nil {
			log.Println("LogMessage: unable to persist log entry: " + err.Error())
		}
	}()
	return traceId
}

func JsonErrorResponse(c *fiber.Ctx, statusCode int, message string, logger ...Logger) error {
	if len(logger) != 0 {
		LogMessage(string(logger[0].LogLevel), logger[0].Message, logger[0].ServiceName)
	}
	c.SendStatus(statusCode)
	return c.JSON(fiber.Map{"status": statusCode, "message": message})
}

// SecurePath validates the bearer token against redis and returns the merchant
// payload saved at login.
func SecurePath(c *fiber.Ctx, redisClient *redis.Client) (*model.Merchant, error) {
	token := strings.TrimSpace(strings.TrimPrefix(c.Get("Authorization"), "Bearer"))
	if token == "" {
		return nil, errors.New("unauthorized, please login")
	}
	payload, err := redisClient.Get(ctx, token).Result()
	if err == redis.Nil {
		return nil, errors.New("unauthorized, please login")
	} else if err != nil {
		return nil, errors.New("unable to verify your session, please try again")
	}
	merchant := new(model.Merchant)
	if err := json.Unmarshal([]byte(payload), merchant); err != nil {
		return nil, errors.New("unauthorized, please login")
	}
	//sliding session
	redisClient.Expire(ctx, token, SessionTTL())
	return merchant, nil
}

// RegexValidation backs the custom `regex` validator tag.
func RegexValidation(fl validator.FieldLevel) bool {
	pattern := fl.Param()
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(fl.Field().String())
}

func IsStrongPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 8 {
		return false
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, ch := range password {
		switch {
		case ch >= 'A' && ch <= 'Z':
			hasUpper = true
		case ch >= 'a' && ch <= 'z':
			hasLower = true
		case ch >= '0' && ch <= '9':
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSpecial
}

const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 .,_@-"

// ValidateStruct screens string fields for characters outside the safe set,
// returning the offending field names. allowedSpecial extends the set,
// skipKeys are left unchecked (passwords, free-form text).
func ValidateStruct(data interface{}, allowedSpecial []string, skipKeys []string) []string {
	invalidKeys := []string{}
	allowed := safeChars + strings.Join(allowedSpecial, "")
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return invalidKeys
	}
	t := v.Type()
fields:
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).Kind() != reflect.String {
			continue
		}
		name := t.Field(i).Name
		for _, skip := range skipKeys {
			if skip == name {
				continue fields
			}
		}
		for _, ch := range v.Field(i).String() {
			if !strings.ContainsRune(allowed, ch) {
				invalidKeys = append(invalidKeys, name)
				continue fields
			}
		}
	}
	return invalidKeys
}

func ValidateStructText(invalidKeys []string) *string {
	if len(invalidKeys) == 0 {
		return nil
	}
	message := fmt.Sprintf("%s contains unexpected characters", strings.Join(invalidKeys, ", "))
	return &message
}

// IsErrDuplicate reports a unique-constraint violation and the key involved.
func IsErrDuplicate(err error) (bool, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true, constraintKey(pgErr)
	}
	return false, ""
}

// IsForeignKeyErr reports a foreign-key violation and the key involved.
func IsForeignKeyErr(err error) (bool, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return true, constraintKey(pgErr)
	}
	return false, ""
}

func constraintKey(pgErr *pgconn.PgError) string {
	// Detail looks like: Key (email)=(x@y.z) already exists.
	if start := strings.Index(pgErr.Detail, "("); start != -1 {
		if end := strings.Index(pgErr.Detail[start:], ")"); end != -1 {
			return pgErr.Detail[start+1 : start+end]
		}
	}
	return pgErr.ConstraintName
}

func Localize(localizer *i18n.Localizer, messageID string, templateData map[string]interface{}) string {
	message, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: templateData,
	})
	if err != nil {
		return messageID
	}
	return message
}
