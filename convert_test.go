package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ConvertTestSuite struct {
	suite.Suite
	c *typeConverter
}

func (s *ConvertTestSuite) SetupTest() {
	s.c = newTypeConverter()
}

func TestConvertTestSuite(t *testing.T) {
	suite.Run(t, new(ConvertTestSuite))
}

func (s *ConvertTestSuite) TestExactMatchHasZeroWeight() {
	val, weight, err := s.c.convert(42, reflect.TypeOf(0))
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), weightExactMatch, weight)
	assert.Equal(s.T(), 42, val.Interface())
}

func (s *ConvertTestSuite) TestStringToIntConversionCostsMoreThanExact() {
	val, weight, err := s.c.convert("7", reflect.TypeOf(0))
	assert.NoError(s.T(), err)
	assert.Greater(s.T(), weight, weightExactMatch)
	assert.Equal(s.T(), 7, val.Interface())
}

func (s *ConvertTestSuite) TestNilToNonNilableTypeFails() {
	_, _, err := s.c.convert(nil, reflect.TypeOf(0))
	assert.Error(s.T(), err)
}

func (s *ConvertTestSuite) TestNilToPointerTypeYieldsZeroValue() {
	val, weight, err := s.c.convert(nil, reflect.TypeOf(&Greeter{}))
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), weightExactMatch, weight)
	assert.True(s.T(), val.IsNil())
}

func (s *ConvertTestSuite) TestUnconvertibleTypesFail() {
	_, weight, err := s.c.convert(42, reflect.TypeOf(&Greeter{}))
	assert.Error(s.T(), err)
	assert.Equal(s.T(), weightUnassignable, weight)
}
