package container

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type embeddedBase struct {
	Logger string `inject:"loggerBean"`
}

type derivedWithEmbedding struct {
	embeddedBase
	Store string `inject:"storeBean" required:"false"`
}

type MetadataTestSuite struct {
	suite.Suite
	scanner *metadataScanner
}

func (s *MetadataTestSuite) SetupTest() {
	s.scanner = newMetadataScanner(DefaultOptions())
}

func TestMetadataTestSuite(t *testing.T) {
	suite.Run(t, new(MetadataTestSuite))
}

func (s *MetadataTestSuite) TestScanFieldsWalksEmbeddedStructsParentFirst() {
	meta := s.scanner.buildInjectionMetadata(reflect.TypeOf(derivedWithEmbedding{}))
	assert.Len(s.T(), meta.Elements, 2)
	assert.Equal(s.T(), "Logger", meta.Elements[0].FieldName)
	assert.Equal(s.T(), "Store", meta.Elements[1].FieldName)
	assert.True(s.T(), meta.Elements[0].Required)
	assert.False(s.T(), meta.Elements[1].Required)
	assert.Equal(s.T(), "loggerBean", meta.Elements[0].Qualifier)
}

func (s *MetadataTestSuite) TestInjectionMetadataIsCachedPerType() {
	t := reflect.TypeOf(derivedWithEmbedding{})
	first := s.scanner.buildInjectionMetadata(t)
	second := s.scanner.buildInjectionMetadata(t)
	assert.Same(s.T(), first, second)
}

type explicitMethodTarget struct{}

func (explicitMethodTarget) Configure(dep string) {}

func (s *MetadataTestSuite) TestRegisterInjectedMethodAddsElement() {
	t := reflect.TypeOf(explicitMethodTarget{})
	s.scanner.RegisterInjectedMethod(t, "Configure", true, "")
	meta := s.scanner.buildInjectionMetadata(t)
	assert.Len(s.T(), meta.Elements, 1)
	assert.Equal(s.T(), elementMethod, meta.Elements[0].Kind)
	assert.Equal(s.T(), "Configure", meta.Elements[0].MethodName)
}

func (s *MetadataTestSuite) TestLifecycleMetadataDeduplicatesExplicitInitMethod() {
	t := reflect.TypeOf(explicitMethodTarget{})
	s.scanner.RegisterLifecycleMethods(t, []string{"Start", "Start", "Warmup"}, nil)

	def := &MergedBeanDefinition{beanName: "x"}
	def.ExternallyManagedConfigMembers = make(map[string]bool)
	def.InitMethodName = "Start"

	s.scanner.checkConfigMembers(def, t)
	assert.False(s.T(), def.ExternallyManagedConfigMembers["init:Start"])
	assert.True(s.T(), def.ExternallyManagedConfigMembers["init:Warmup"])
}
