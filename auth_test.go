package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	. "github.com/smartystreets/goconvey/convey"
)

func setupTestDb(t *testing.T) {
	db, err := openDb(filepath.Join(t.TempDir(), "tmp", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	ENV.DB = db
}

func postLogin(email, password string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(&LoginPayload{
		Email:    email,
		Password: password,
	})

	req := httptest.NewRequest("POST", "/api/login", bytes.NewBuffer(body))
	req.Header.Add("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	http.HandlerFunc(Login).ServeHTTP(rr, req)
	return rr
}

func TestOperator(t *testing.T) {
	Convey("Methods work as expected", t, func() {
		operator := new(Operator)
		Convey("Setting and verify password works correctly with hashes", func() {
			So(operator.SetPassword([]byte("hello123")), ShouldBeNil)
			So(operator.Password, ShouldStartWith, "$")

			So(operator.VerifyPassword([]byte("hello123")), ShouldBeNil)
			So(operator.VerifyPassword([]byte("hello12")), ShouldNotBeNil)
		})

		Convey("Invalid hash returns the correct error code", func() {
			operator.Password = "I DON'T WORK"
			So(operator.VerifyPassword([]byte("hello123")).Error(), ShouldContainSubstring, "hashedSecret too short")
		})
	})
}

func TestJWTGeneration(t *testing.T) {
	Convey("claims carry the subject and issuer", t, func() {
		ts, err := newJWT("hello test")
		So(err, ShouldBeNil)
		So(ts, ShouldNotBeEmpty)

		claims := &jwt.StandardClaims{}
		_, err = jwt.ParseWithClaims(ts, claims, func(*jwt.Token) (interface{}, error) { return ENV.jwtSecret, nil })
		So(err, ShouldBeNil)
		So(claims.Subject, ShouldEqual, "hello test")
		So(claims.Issuer, ShouldEqual, ENV.JWT_ISSUER)
	})
}

func TestLogin(t *testing.T) {
	setupTestDb(t)
	if err := createOperator("login@test.case", "testing123"); err != nil {
		t.Fatal(err)
	}

	Convey("Valid request works as expected", t, func() {
		rr := postLogin("login@test.case", "testing123")
		So(rr.Code, ShouldEqual, http.StatusOK)

		var payload JWTPayload
		So(json.Unmarshal(rr.Body.Bytes(), &payload), ShouldBeNil)
		So(payload.SignedToken, ShouldNotBeEmpty)
	})

	Convey("Invalid credentials return error", t, func() {
		Convey("Incorrect username provides 404", func() {
			So(postLogin("login-no@test.case", "testing123").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Incorrect password provides 403", func() {
			So(postLogin("login@test.case", "testing12").Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("Missing email provides 400", func() {
			So(postLogin("", "testing123").Code, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Operators are unique by email", t, func() {
		So(createOperator("login@test.case", "other"), ShouldNotBeNil)
	})
}

func TestValidateJWT(t *testing.T) {
	protected := ValidateJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		return rr
	}

	Convey("Given a valid token", t, func() {
		ts, err := newJWT("op@test.case")
		So(err, ShouldBeNil)

		Convey("it is accepted from the header", func() {
			req := httptest.NewRequest("GET", "/", nil)
			req.Header.Set("Authorization", "Bearer "+ts)
			So(serve(req).Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("it is accepted from the query", func() {
			So(serve(httptest.NewRequest("GET", "/?jwt="+ts, nil)).Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("it is accepted from a cookie", func() {
			req := httptest.NewRequest("GET", "/", nil)
			req.AddCookie(&http.Cookie{Name: "jwt", Value: ts})
			So(serve(req).Code, ShouldEqual, http.StatusTeapot)
		})
	})

	Convey("a missing token is refused", t, func() {
		rr := serve(httptest.NewRequest("GET", "/", nil))
		So(rr.Code, ShouldEqual, http.StatusUnauthorized)
		So(rr.Body.String(), ShouldContainSubstring, JWTEmpty.Error())
	})

	Convey("an expired token is reported as such", t, func() {
		past := time.Now().Add(-2 * time.Hour)
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.StandardClaims{
			Subject:   "op@test.case",
			IssuedAt:  past.Unix(),
			ExpiresAt: past.Add(time.Hour).Unix(),
		})
		ts, _ := token.SignedString(ENV.jwtSecret)

		req := httptest.NewRequest("GET", "/?jwt="+ts, nil)
		rr := serve(req)
		So(rr.Code, ShouldEqual, http.StatusUnauthorized)
		So(rr.Body.String(), ShouldContainSubstring, "Token has expired")
	})

	Convey("a token signed with another secret is refused", t, func() {
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.StandardClaims{Subject: "op@test.case"})
		ts, _ := token.SignedString([]byte("not the secret"))

		rr := serve(httptest.NewRequest("GET", "/?jwt="+ts, nil))
		So(rr.Code, ShouldEqual, http.StatusUnauthorized)
		So(rr.Body.String(), ShouldContainSubstring, "Invalid token")
	})
}
