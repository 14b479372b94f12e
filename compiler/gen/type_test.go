package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/prax/compiler/load"
	"github.com/syssam/prax/schema"
)

const blog = `
enum Role {
  User
  Admin @map("ADMINISTRATOR")
}

enum Status {
  DRAFT
  IN_REVIEW
}

type Address {
  street String
  zip    String?
}

/// A registered account.
model User {
  id        Int       @id @auto
  email     String    @unique
  role      Role      @default(User)
  /// Public profile text.
  bio       String?
  avatarUrl String?
  address   Address?
  tags      String[]
  apiKey    Uuid      @default(uuid())
  data      Json?
  photo     Bytes?
  createdAt DateTime  @default(now())
  posts     Post[]
  @@map("users")
}

model Post {
  id       BigInt  @id
  status   Status
  authorId Int?
  author   User?   @relation(fields: [authorId], references: [id])
  score    Float
  price    Decimal
  hidden   Boolean
}

model Legacy {
  id Int @id
  @@ignore
}

view ActivePost {
  id Int @unique
  @@sql("SELECT id FROM Post WHERE hidden = false")
}
`

func parse(t *testing.T, src string) *schema.Schema {
	t.Helper()
	s, err := load.Source(src)
	require.NoError(t, err)
	return s
}

func TestNewGraph(t *testing.T) {
	g, err := NewGraph(MustNewConfig(), parse(t, blog))
	require.NoError(t, err)

	require.Len(t, g.Enums, 2)
	role := g.Enums[0]
	assert.Equal(t, "Role", role.Name)
	require.Len(t, role.Values, 2)
	assert.Equal(t, "RoleAdmin", role.Values[1].Const)
	assert.Equal(t, "ADMINISTRATOR", role.Values[1].Value)
	assert.Equal(t, "StatusInReview", g.Enums[1].Values[1].Const)

	require.Len(t, g.Composites, 1)
	assert.Equal(t, "Address", g.Composites[0].Name)
	assert.Empty(t, g.Composites[0].Table)

	require.Len(t, g.Types, 3)
	user, post, view := g.Types[0], g.Types[1], g.Types[2]
	assert.Equal(t, "users", user.Table)
	assert.Equal(t, "A registered account.", user.Doc)
	assert.True(t, view.View)
	assert.Equal(t, "ActivePost", view.Table)

	types := make(map[string]string)
	for _, f := range user.Fields {
		types[f.StructField] = f.Type.String()
	}
	assert.Equal(t, map[string]string{
		"ID":        "int",
		"Email":     "string",
		"Role":      "Role",
		"Bio":       "*string",
		"AvatarURL": "*string",
		"Address":   "*Address",
		"Tags":      "[]string",
		"APIKey":    "uuid.UUID",
		"Data":      "json.RawMessage",
		"Photo":     "[]byte",
		"CreatedAt": "time.Time",
	}, types)
	assert.True(t, user.Fields[0].ID)
	assert.True(t, user.Fields[1].Unique)
	assert.Equal(t, "Public profile text.", user.Fields[3].Doc)

	require.Len(t, user.Edges, 1)
	assert.Equal(t, "Posts", user.Edges[0].StructField)
	assert.Equal(t, "Post", user.Edges[0].Type)
	assert.False(t, user.Edges[0].Unique)

	require.Len(t, post.Edges, 1)
	assert.True(t, post.Edges[0].Unique)
	assert.Equal(t, []string{"authorId"}, post.Edges[0].Fields)
	fields := make(map[string]string)
	for _, f := range post.Fields {
		fields[f.StructField] = f.Type.String()
	}
	assert.Equal(t, "int64", fields["ID"])
	assert.Equal(t, "*int", fields["AuthorID"])
	assert.Equal(t, "float64", fields["Score"])
	assert.Equal(t, "string", fields["Price"])
	assert.Equal(t, "bool", fields["Hidden"])
}

func TestNewGraph_Conflicts(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "Field",
			src:  `model A { id Int @id  user_id Int  userId Int }`,
			want: "both named UserID",
		},
		{
			name: "EnumConstant",
			src: `enum Kind { user_id  userId }
model A { id Int @id  kind Kind }`,
			want: "KindUserID",
		},
		{
			name: "Plural",
			src: `model User { id Int @id }
model Users { id Int @id }`,
			want: "Go identifier Users",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(MustNewConfig(), parse(t, tt.src))
			require.Error(t, err)
			assert.True(t, IsGenerationError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	_, err := NewGraph(nil, schema.New())
	assert.True(t, IsConfigError(err))
}

func TestGoType_String(t *testing.T) {
	tests := []struct {
		typ  GoType
		want string
	}{
		{GoType{Ident: "int"}, "int"},
		{GoType{Ident: "int", Pointer: true}, "*int"},
		{GoType{PkgPath: "github.com/google/uuid", Ident: "UUID", Slice: true}, "[]uuid.UUID"},
		{GoType{Ident: "[]byte", Slice: true}, "[][]byte"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}
