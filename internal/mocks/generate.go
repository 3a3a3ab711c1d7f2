package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Store --dir ../domain/pick --output domain/pick --outpkg pickmock --filename store_mock.go
